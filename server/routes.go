package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.StdMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginHintHandler(), s.StdMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.StdMiddleware(s.guard.RequireSession)...))
}
