package commandstructure

// stubCommand records its calls and delegates to fn, or passes data through.
type stubCommand struct {
	name  string
	calls int
	fn    func([]byte) ([]byte, error)
}

func (s *stubCommand) Name() string {
	return s.name
}

func (s *stubCommand) Execute(imageData []byte) ([]byte, error) {
	s.calls++
	if s.fn == nil {
		return imageData, nil
	}
	return s.fn(imageData)
}

func newMockCommand(name string) *stubCommand {
	return &stubCommand{name: name}
}

func appendingCommand(name, suffix string) *stubCommand {
	return &stubCommand{
		name: name,
		fn: func(data []byte) ([]byte, error) {
			out := make([]byte, 0, len(data)+len(suffix))
			out = append(out, data...)
			return append(out, suffix...), nil
		},
	}
}

func failingCommand(name string, err error) *stubCommand {
	return &stubCommand{
		name: name,
		fn: func([]byte) ([]byte, error) {
			return nil, err
		},
	}
}
