package apiclient

import (
	"fmt"
	"net/url"
)

// Backend route constants. The backend expects the trailing slashes.
const (
	// Auth Routes
	RouteLogin        = "/uauth/login/"
	RouteRegister     = "/uauth/register/"
	RouteLogout       = "/uauth/logout/"
	RouteTokenRefresh = "/uauth/token/refresh/"

	// Social Auth Routes
	RouteUserInfo    = "/social-auth/user-info/"
	RouteGoogleLogin = "/social-auth/google/"
)

// Message routes carry a path parameter
func RouteNewMessage(username string) string {
	return fmt.Sprintf("/messages/new_message/%s/", url.PathEscape(username))
}

func RouteRetrieveMessages(username string) string {
	return fmt.Sprintf("/messages/retrieve/%s/", url.PathEscape(username))
}

func RouteDeleteMessage(id int64) string {
	return fmt.Sprintf("/messages/delete_message/%d/", id)
}

func RouteReplyMessage(id int64) string {
	return fmt.Sprintf("/messages/reply/%d/", id)
}
