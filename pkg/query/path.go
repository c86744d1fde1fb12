package query

import "sort"

// Path is a SPARQL property path expression.
type Path interface {
	isPath()
}

// PathIRI is a single predicate.
type PathIRI struct {
	IRI string
}

// PathInverse is ^path.
type PathInverse struct {
	Path Path
}

// PathSequence is path1/path2/...
type PathSequence struct {
	Steps []Path
}

// PathAlternative is path1|path2|...
type PathAlternative struct {
	Options []Path
}

// PathModifier is path*, path+ or path?.
type PathModifier struct {
	Path     Path
	Modifier byte
}

func (*PathIRI) isPath()         {}
func (*PathInverse) isPath()     {}
func (*PathSequence) isPath()    {}
func (*PathAlternative) isPath() {}
func (*PathModifier) isPath()    {}

// pathPair is one (start, end) connection produced by a path.
type pathPair struct {
	start, end string
}

// evalPath returns every pair connected by path. subject and object are
// bound terms or "" when free.
func (e *Executor) evalPath(path Path, subject, object string) []pathPair {
	if subject == "" && object != "" {
		pairs := e.evalPath(invert(path), object, "")
		result := make([]pathPair, len(pairs))
		for i, pair := range pairs {
			result[i] = pathPair{start: pair.end, end: pair.start}
		}
		return result
	}

	var starts []string
	if subject != "" {
		starts = []string{subject}
	} else {
		starts = e.pathStartNodes(path)
	}

	var pairs []pathPair
	for _, start := range starts {
		for _, end := range e.pathReach(path, start) {
			if object == "" || object == end {
				pairs = append(pairs, pathPair{start: start, end: end})
			}
		}
	}
	return pairs
}

// pathReach returns the distinct nodes reachable from start along path, sorted.
func (e *Executor) pathReach(path Path, start string) []string {
	reached := e.step(path, map[string]bool{start: true})
	return sortedSet(reached)
}

// step advances a frontier of nodes one application of path.
func (e *Executor) step(path Path, frontier map[string]bool) map[string]bool {
	next := make(map[string]bool)

	switch p := path.(type) {
	case *PathIRI:
		for node := range frontier {
			for _, triple := range e.store.Find(node, p.IRI, "") {
				next[triple.Object] = true
			}
		}
	case *PathInverse:
		iri, ok := p.Path.(*PathIRI)
		if !ok {
			return e.step(invert(p.Path), frontier)
		}
		for node := range frontier {
			for _, triple := range e.store.Find("", iri.IRI, node) {
				next[triple.Subject] = true
			}
		}
	case *PathSequence:
		current := frontier
		for _, s := range p.Steps {
			current = e.step(s, current)
			if len(current) == 0 {
				break
			}
		}
		return current
	case *PathAlternative:
		for _, option := range p.Options {
			for node := range e.step(option, frontier) {
				next[node] = true
			}
		}
	case *PathModifier:
		switch p.Modifier {
		case '?':
			for node := range frontier {
				next[node] = true
			}
			for node := range e.step(p.Path, frontier) {
				next[node] = true
			}
		case '*', '+':
			if p.Modifier == '*' {
				for node := range frontier {
					next[node] = true
				}
			}
			current := e.step(p.Path, frontier)
			for len(current) > 0 {
				fresh := make(map[string]bool)
				for node := range current {
					if !next[node] {
						next[node] = true
						fresh[node] = true
					}
				}
				current = e.step(p.Path, fresh)
			}
		}
	}

	return next
}

// pathStartNodes lists candidate subjects when neither end is bound.
func (e *Executor) pathStartNodes(path Path) []string {
	if first, ok := firstIRI(path); ok && !allowsZeroLength(path) {
		seen := make(map[string]bool)
		for _, triple := range e.store.Find("", first, "") {
			seen[triple.Subject] = true
		}
		return sortedSet(seen)
	}

	nodes := make(map[string]bool)
	for _, s := range e.store.Subjects() {
		nodes[s] = true
	}
	for _, o := range e.store.Objects() {
		nodes[o] = true
	}
	return sortedSet(nodes)
}

func firstIRI(path Path) (string, bool) {
	switch p := path.(type) {
	case *PathIRI:
		return p.IRI, true
	case *PathSequence:
		if len(p.Steps) > 0 {
			return firstIRI(p.Steps[0])
		}
	case *PathModifier:
		if p.Modifier == '+' {
			return firstIRI(p.Path)
		}
	}
	return "", false
}

func allowsZeroLength(path Path) bool {
	switch p := path.(type) {
	case *PathModifier:
		return p.Modifier != '+' || allowsZeroLength(p.Path)
	case *PathSequence:
		for _, s := range p.Steps {
			if !allowsZeroLength(s) {
				return false
			}
		}
		return true
	case *PathAlternative:
		for _, option := range p.Options {
			if allowsZeroLength(option) {
				return true
			}
		}
	case *PathInverse:
		return allowsZeroLength(p.Path)
	}
	return false
}

// invert returns the path walked from object to subject.
func invert(path Path) Path {
	switch p := path.(type) {
	case *PathIRI:
		return &PathInverse{Path: p}
	case *PathInverse:
		return p.Path
	case *PathSequence:
		steps := make([]Path, len(p.Steps))
		for i, s := range p.Steps {
			steps[len(p.Steps)-1-i] = invert(s)
		}
		return &PathSequence{Steps: steps}
	case *PathAlternative:
		options := make([]Path, len(p.Options))
		for i, option := range p.Options {
			options[i] = invert(option)
		}
		return &PathAlternative{Options: options}
	case *PathModifier:
		return &PathModifier{Path: invert(p.Path), Modifier: p.Modifier}
	}
	return path
}

func sortedSet(set map[string]bool) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
