package opencollective

import "context"

// GetCollective fetches a collective by slug. An unknown slug yields a
// zero-value Collective, not an error.
func (c *Client) GetCollective(ctx context.Context, slug string) (*Collective, error) {
	var payload struct {
		Collective Collective `json:"collective"`
	}
	err := c.execute(ctx, c.apiURL, queryGetCollective, map[string]any{"slug": slug}, &payload)
	if err != nil {
		return nil, err
	}
	return &payload.Collective, nil
}

// GetMe returns the account the access token authenticates as.
func (c *Client) GetMe(ctx context.Context) (*Account, error) {
	var payload struct {
		Me Account `json:"me"`
	}
	if err := c.execute(ctx, c.apiURL, queryGetMe, nil, &payload); err != nil {
		return nil, err
	}
	return &payload.Me, nil
}

// GetPayoutMethods lists the saved payout methods of an account.
func (c *Client) GetPayoutMethods(ctx context.Context, accountSlug string) ([]PayoutMethod, error) {
	var payload struct {
		Account struct {
			ID            string         `json:"id"`
			Slug          string         `json:"slug"`
			PayoutMethods []PayoutMethod `json:"payoutMethods"`
		} `json:"account"`
	}
	err := c.execute(ctx, c.apiURL, queryGetPayoutMethods, map[string]any{"slug": accountSlug}, &payload)
	if err != nil {
		return nil, err
	}
	return payload.Account.PayoutMethods, nil
}
