package reflex

// Discriminator reports whether an inbound message looks like something the
// channel should dispatch. It runs against a View before the message is
// decoded into a Request, so it must stay cheap.
type Discriminator func(v View) bool

// Match calls d(v). A nil Discriminator matches everything.
func (d Discriminator) Match(v View) bool {
	if d == nil {
		return true
	}
	return d(v)
}

// HasFields matches when all paths exist.
func HasFields(paths ...string) Discriminator {
	return func(v View) bool {
		for _, p := range paths {
			if !v.HasField(p) {
				return false
			}
		}
		return true
	}
}

// FieldEquals matches when the path holds the given string value.
func FieldEquals(path, value string) Discriminator {
	return func(v View) bool {
		s, ok := v.GetString(path)
		return ok && s == value
	}
}

// And matches when every discriminator matches.
func And(ds ...Discriminator) Discriminator {
	return func(v View) bool {
		for _, d := range ds {
			if !d.Match(v) {
				return false
			}
		}
		return true
	}
}

// Or matches when any discriminator matches.
func Or(ds ...Discriminator) Discriminator {
	return func(v View) bool {
		for _, d := range ds {
			if d.Match(v) {
				return true
			}
		}
		return false
	}
}

// invocation is the shape every reflex invocation carries.
var invocation = HasFields("target")
