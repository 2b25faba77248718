package stripe

import (
	"sort"

	"github.com/stripe/stripe-go/v76"
)

// TransfersCapable reports whether a connected account can receive transfers.
// Accounts without a capabilities block fall back to payouts_enabled.
func TransfersCapable(acct *stripe.Account) bool {
	if acct == nil {
		return false
	}
	if acct.Capabilities != nil && acct.Capabilities.Transfers != "" {
		return acct.Capabilities.Transfers == stripe.AccountCapabilityStatusActive
	}
	return acct.PayoutsEnabled
}

// OutstandingRequirements returns currently-due and past-due requirement keys,
// deduplicated and sorted.
func OutstandingRequirements(acct *stripe.Account) []string {
	if acct == nil || acct.Requirements == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, list := range [][]string{acct.Requirements.CurrentlyDue, acct.Requirements.PastDue} {
		for _, r := range list {
			if _, ok := seen[r]; ok || r == "" {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}
