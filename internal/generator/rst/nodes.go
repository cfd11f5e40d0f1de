package rst

// Node is a block-level element.
type Node interface{ node() }

type (
	Section struct {
		Level int
		Title string
		ID    string
	}
	Paragraph struct{ Text string }
	Literal   struct {
		Text     string
		Language string
	}
	List struct {
		Ordered bool
		Items   [][]Node
	}
	DefItem struct {
		Term string
		Body []Node
	}
	DefList    struct{ Items []DefItem }
	FieldList  struct{ Items []DefItem }
	Quote      struct{ Body []Node }
	Admonition struct {
		Kind  string
		Title string
		Body  []Node
	}
	Image struct {
		URI     string
		Alt     string
		Width   string
		Caption []Node // figures only
	}
	Raw        struct{ HTML string }
	Anchor     struct{ ID string }
	Transition struct{}
	Toctree    struct {
		Caption  string
		MaxDepth int
		Hidden   bool
		Glob     bool
		Entries  []TocEntry
		Line     int
	}
)

// TocEntry is one toctree line: "target" or "Title <target>".
type TocEntry struct {
	Title  string
	Target string
}

func (*Section) node()    {}
func (*Paragraph) node()  {}
func (*Literal) node()    {}
func (*List) node()       {}
func (*DefList) node()    {}
func (*FieldList) node()  {}
func (*Quote) node()      {}
func (*Admonition) node() {}
func (*Image) node()      {}
func (*Raw) node()        {}
func (*Anchor) node()     {}
func (*Transition) node() {}
func (*Toctree) node()    {}
