package enums

// CampaignStatus reflects whether a campaign currently accepts orders.
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusPaused   CampaignStatus = "paused"
	CampaignStatusArchived CampaignStatus = "archived"
)

// String implements fmt.Stringer.
func (c CampaignStatus) String() string {
	return string(c)
}

// AcceptsOrders reports whether checkout is allowed against the campaign.
func (c CampaignStatus) AcceptsOrders() bool {
	return c == CampaignStatusActive
}
