package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignRates(t *testing.T) {
	campaign := Campaign{
		SentCount:    3,
		Opens:        1,
		Clicks:       2,
		Unsubscribes: 3,
		Bounces:      0,
	}

	assert.Equal(t, 33.33, campaign.OpenRate())
	assert.Equal(t, 66.67, campaign.ClickRate())
	assert.Equal(t, 100.0, campaign.UnsubscribeRate())
	assert.Equal(t, 0.0, campaign.BounceRate())
}

func TestCampaignRatesZeroWhenNothingSent(t *testing.T) {
	campaign := Campaign{Opens: 5, Clicks: 5}

	assert.Equal(t, 0.0, campaign.OpenRate())
	assert.Equal(t, 0.0, campaign.ClickRate())
}

func TestCampaignPolicies(t *testing.T) {
	cases := []struct {
		status    string
		canEdit   bool
		canDelete bool
		sendable  bool
	}{
		{CampaignStatusDraft, true, true, true},
		{CampaignStatusScheduled, true, false, true},
		{CampaignStatusSending, true, false, false},
		{CampaignStatusSent, false, false, false},
	}

	for _, tc := range cases {
		campaign := Campaign{Status: tc.status}
		assert.Equal(t, tc.canEdit, campaign.CanEdit(), "can_edit for %s", tc.status)
		assert.Equal(t, tc.canDelete, campaign.CanDelete(), "can_delete for %s", tc.status)
		assert.Equal(t, tc.sendable, campaign.Sendable(), "sendable for %s", tc.status)
	}
}
