package timeout

// Type labels drive every user-facing message.
const (
	testLabel    = "Test timeout"
	keywordLabel = "Keyword timeout"
)

// TestTimeout is the timeout attached to one test execution. Besides its own
// expiry it records, stickily, that some keyword inside the test timed out.
type TestTimeout struct {
	Timeout

	keywordTimedOut bool
}

// NewTestTimeout creates a test-level timeout from its raw spec and optional
// expiry message.
func NewTestTimeout(spec, message string, opts ...Option) *TestTimeout {
	return &TestTimeout{Timeout: *newTimeout(testLabel, spec, message, opts)}
}

// SetKeywordTimeout records whether a keyword running inside this test timed
// out. Once set, the flag is never cleared.
func (t *TestTimeout) SetKeywordTimeout(occurred bool) {
	t.keywordTimedOut = t.keywordTimedOut || occurred
}

// AnyTimeoutOccurred reports whether this test's own timeout expired or any
// keyword inside it timed out.
func (t *TestTimeout) AnyTimeoutOccurred() bool {
	return t.TimedOut() || t.keywordTimedOut
}

// KeywordTimeout is the timeout attached to one keyword execution.
type KeywordTimeout struct {
	Timeout
}

// NewKeywordTimeout creates a keyword-level timeout from its raw spec and
// optional expiry message.
func NewKeywordTimeout(spec, message string, opts ...Option) *KeywordTimeout {
	return &KeywordTimeout{Timeout: *newTimeout(keywordLabel, spec, message, opts)}
}
