package http

import (
	"net/url"

	"github.com/cimillas/checkin-pay/internal/domain"
)

// Routes are the front-end pages the screen controller sends the browser to.
type Routes struct {
	Success   string
	Failure   string
	Verifying string
	Expired   string
}

func DefaultRoutes() Routes {
	return Routes{
		Success:   "/payment/success",
		Failure:   "/payment/failure",
		Verifying: "/payment/verifying",
		Expired:   "/payment/expired",
	}
}

// For picks the page for a result. An expired hold has its own page so the
// user can start over.
func (r Routes) For(res domain.Result) string {
	q := url.Values{}
	if res.OrderID != "" {
		q.Set("orderId", res.OrderID)
	}

	base := r.Failure
	switch {
	case res.View == domain.ViewSuccess:
		base = r.Success
	case res.View == domain.ViewVerifying:
		base = r.Verifying
	case res.Reason == domain.ReasonHoldExpired:
		base = r.Expired
	default:
		if res.Reason != "" {
			q.Set("reason", res.Reason)
		}
	}

	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

// ExpiredFor is where a hold tick sends the browser once the timer ran out.
func (r Routes) ExpiredFor(t domain.HoldTimer) string {
	q := url.Values{}
	q.Set("subjectType", string(t.Subject.Type))
	q.Set("subjectId", t.Subject.ID)
	return r.Expired + "?" + q.Encode()
}
