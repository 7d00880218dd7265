package store

// Cursor is a view of one subtree of a Store. Reads and writes through a
// cursor are relative to its path and land in the shared document.
type Cursor struct {
	store *Store
	path  []string
}

// Path returns the absolute path of the cursor.
func (c *Cursor) Path() []string {
	return append([]string(nil), c.path...)
}

func (c *Cursor) Store() *Store {
	return c.store
}

// Select returns a cursor for a path relative to c.
func (c *Cursor) Select(path ...string) *Cursor {
	return &Cursor{store: c.store, path: c.join(path)}
}

func (c *Cursor) Get(path ...string) interface{} {
	return c.store.Get(c.join(path)...)
}

func (c *Cursor) Exists(path ...string) bool {
	return c.store.Exists(c.join(path)...)
}

func (c *Cursor) Set(value interface{}) {
	c.store.Set(c.path, value)
}

func (c *Cursor) DeepMerge(partial map[string]interface{}) {
	c.store.DeepMerge(c.path, partial)
}

func (c *Cursor) Unset() {
	c.store.Unset(c.path)
}

func (c *Cursor) Apply(fn func(current interface{}) interface{}) {
	c.store.Apply(c.path, fn)
}

// On subscribes to changes of the cursor's subtree.
func (c *Cursor) On(l Listener) func() {
	return c.store.Subscribe(c.path, l)
}

func (c *Cursor) join(rel []string) []string {
	out := make([]string, 0, len(c.path)+len(rel))
	out = append(out, c.path...)
	return append(out, rel...)
}
