package service

// Client-visible routes.
const (
	PathLogin      = "/login"
	PathOnboarding = "/onboarding"
	PathChat       = "/"
)

// Route returns where a visitor of path ends up. Unauthenticated users go
// to login, users who haven't onboarded go to onboarding, everyone else
// lands on the chat. Unknown paths redirect to the chat route.
func Route(authenticated, onboarded bool, path string) string {
	switch path {
	case PathLogin:
		if authenticated {
			return Route(authenticated, onboarded, PathChat)
		}
		return PathLogin
	case PathOnboarding:
		if !authenticated {
			return PathLogin
		}
		if onboarded {
			return PathChat
		}
		return PathOnboarding
	case PathChat:
		if !authenticated {
			return PathLogin
		}
		if !onboarded {
			return PathOnboarding
		}
		return PathChat
	default:
		return Route(authenticated, onboarded, PathChat)
	}
}
