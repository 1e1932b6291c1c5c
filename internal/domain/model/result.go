package model

// OutputFile is a staged file that should be sent back to the sender.
type OutputFile struct {
	Path     string
	FileName string
}

// Result is the outcome of one Request: either a success payload or Err.
type Result struct {
	Text     string
	Document *OutputFile
	Count    int
	Err      error
}

func (r *Result) OK() bool { return r != nil && r.Err == nil }
