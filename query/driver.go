package query

// Driver owns the AST of the most recently parsed query.
//
// Parse replaces any previously held tree. Root may be read concurrently once
// parsing has finished, but Parse must not race with readers.
type Driver struct {
	query string
	root  Node
}

// NewDriver returns an empty Driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Parse parses src and stores the resulting tree. On error the previous tree
// is discarded and Root returns nil.
func (d *Driver) Parse(src string) error {
	root, err := Parse(src)
	if err != nil {
		d.query, d.root = "", nil
		return err
	}
	d.query, d.root = src, root
	return nil
}

// Root returns the root of the parsed tree, or nil if nothing was parsed.
func (d *Driver) Root() Node {
	return d.root
}

// Query returns the text the current tree was parsed from.
func (d *Driver) Query() string {
	return d.query
}
