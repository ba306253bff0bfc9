package domain

// Decision is the outcome of the route gate: either Allow or a redirect to Target.
type Decision struct {
	Allow  bool
	Target string
}

var Allow = Decision{Allow: true}

func RedirectTo(target string) Decision {
	return Decision{Target: target}
}
