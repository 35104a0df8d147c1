package domain

// Envelope is the result of handling one prompt. It is exactly one of
// Reply, Stream or Failure.
type Envelope interface {
	envelope()
}

// Reply is a complete answer, optionally with chart data for the dashboard.
type Reply struct {
	Text      string
	ChartData any
}

// Stream is an answer that is still being generated.
type Stream struct {
	Tokens TokenStream
}

// Failure is a service-level failure shown to the caller as unavailable.
type Failure struct {
	Message string
}

func (Reply) envelope()   {}
func (Stream) envelope()  {}
func (Failure) envelope() {}
