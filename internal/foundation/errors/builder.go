package errors

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts a builder with the category's default severity and retry strategy.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	t := traitsOf(category)
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: t.severity,
		retry:    t.retry,
		message:  message,
		context:  make(ErrorContext),
	}}
}

// WrapError starts a builder around an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.err.retry = strategy
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder      { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder    { return b.WithSeverity(SeverityWarning) }
func (b *ErrorBuilder) Retryable() *ErrorBuilder  { return b.WithRetry(RetryBackoff) }
func (b *ErrorBuilder) UserAction() *ErrorBuilder { return b.WithRetry(RetryUserAction) }

// Build returns the error. The builder may be reused; later changes do not
// affect errors already built.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	e.context = b.err.context.clone()
	return &e
}

func ConfigError(message string) *ErrorBuilder     { return NewError(CategoryConfig, message) }
func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message) }
func AuthError(message string) *ErrorBuilder       { return NewError(CategoryAuth, message) }

// NetworkError is retryable with backoff unless overridden.
func NetworkError(message string) *ErrorBuilder { return NewError(CategoryNetwork, message) }

func SourceError(message string) *ErrorBuilder     { return NewError(CategorySource, message) }
func InstallError(message string) *ErrorBuilder    { return NewError(CategoryInstall, message) }
func GenerationError(message string) *ErrorBuilder { return NewError(CategoryGeneration, message) }
func FileSystemError(message string) *ErrorBuilder { return NewError(CategoryFileSystem, message) }
func EventStoreError(message string) *ErrorBuilder { return NewError(CategoryEventStore, message) }
func RuntimeError(message string) *ErrorBuilder    { return NewError(CategoryRuntime, message) }
func InternalError(message string) *ErrorBuilder   { return NewError(CategoryInternal, message) }
