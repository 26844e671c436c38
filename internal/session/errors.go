package session

// noModelError signals an operation that requires a loaded model.
type noModelError struct{}

func (noModelError) Error() string { return "no model loaded" }

// ErrNoModel constructs a noModelError.
func ErrNoModel() error { return noModelError{} }

// IsNoModel reports whether err indicates no model is loaded.
func IsNoModel(err error) bool {
	_, ok := err.(noModelError)
	return ok
}

// sessionNotFoundError signals an unknown conversation id.
type sessionNotFoundError struct{ id string }

func (e sessionNotFoundError) Error() string { return "session not found: " + e.id }

// ErrSessionNotFound constructs a sessionNotFoundError.
func ErrSessionNotFound(id string) error { return sessionNotFoundError{id: id} }

// IsSessionNotFound reports whether err indicates a missing session id.
func IsSessionNotFound(err error) bool {
	_, ok := err.(sessionNotFoundError)
	return ok
}

// modelLoadError signals a load-time failure (missing file, native load
// failure). The manager stays unloaded and the load is safe to retry.
type modelLoadError struct {
	path  string
	cause error
}

func (e modelLoadError) Error() string {
	return "model load failed: " + e.path + ": " + e.cause.Error()
}

func (e modelLoadError) Unwrap() error { return e.cause }

// ErrModelLoad constructs a modelLoadError.
func ErrModelLoad(path string, cause error) error { return modelLoadError{path: path, cause: cause} }

// IsModelLoad reports whether err indicates a model load failure.
func IsModelLoad(err error) bool {
	_, ok := err.(modelLoadError)
	return ok
}

// busyError signals a second concurrent generation on one session.
type busyError struct{ id string }

func (e busyError) Error() string { return "generation already in flight for session: " + e.id }

// ErrBusy constructs a busyError.
func ErrBusy(id string) error { return busyError{id: id} }

// IsBusy reports whether err indicates an in-flight generation conflict.
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}

// embeddingError wraps failures of the embedding primitive.
type embeddingError struct{ cause error }

func (e embeddingError) Error() string { return "embedding failed: " + e.cause.Error() }

func (e embeddingError) Unwrap() error { return e.cause }

// ErrEmbedding constructs an embeddingError.
func ErrEmbedding(cause error) error { return embeddingError{cause: cause} }

// IsEmbedding reports whether err is an embedding failure.
func IsEmbedding(err error) bool {
	_, ok := err.(embeddingError)
	return ok
}
