package handlers

import (
	"net/http"

	"github.com/stanstork/noticeboard/internal/authz"
	"github.com/stanstork/noticeboard/internal/notification"
)

// requestFromHTTP builds a notification request from the authenticated
// identity and the query string. Repeated query keys keep the first value.
func requestFromHTTP(r *http.Request) (notification.Request, bool) {
	user, ok := authz.UserFromRequest(r)
	if !ok {
		return notification.Request{}, false
	}
	query := r.URL.Query()
	params := make(map[string]string, len(query))
	for k, v := range query {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return notification.Request{
		User:   user,
		Roles:  authz.RolesFromRequest(r),
		Params: params,
	}, true
}
