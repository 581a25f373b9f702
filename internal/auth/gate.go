package auth

// Gate is the single access check consumed by every protected route.
type Gate struct {
	sessions *Sessions
}

func NewGate(sessions *Sessions) *Gate {
	return &Gate{sessions: sessions}
}

// ResolvePrincipal turns a raw artifact into a principal. It fails closed:
// any parse, signature, expiry or invariant failure yields false.
func (g *Gate) ResolvePrincipal(raw string) (p Principal, ok bool) {
	defer func() {
		if recover() != nil {
			p, ok = Principal{}, false
		}
	}()
	if raw == "" || g == nil || g.sessions == nil {
		return Principal{}, false
	}
	p, err := g.sessions.Parse(raw)
	if err != nil {
		return Principal{}, false
	}
	return p, true
}

// RequireAuthenticated returns ErrUnauthenticated unless raw resolves.
func (g *Gate) RequireAuthenticated(raw string) (Principal, error) {
	p, ok := g.ResolvePrincipal(raw)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// RequireRole authenticates and then checks the role. An empty allowed set
// admits nobody.
func (g *Gate) RequireRole(raw string, allowed ...Role) (Principal, error) {
	p, err := g.RequireAuthenticated(raw)
	if err != nil {
		return Principal{}, err
	}
	if !p.HasRole(allowed...) {
		return Principal{}, ErrUnauthorized
	}
	return p, nil
}
