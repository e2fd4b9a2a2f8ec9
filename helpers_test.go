package main

// testLogger routes log output through the test log so failures are easy to
// read and passing tests stay quiet.
type testLogger struct {
	logf func(format string, v ...interface{})
}

func (l testLogger) Debug(format string, v ...interface{}) { l.logf(format, v...) }
func (l testLogger) Info(format string, v ...interface{})  { l.logf(format, v...) }
func (l testLogger) Warn(format string, v ...interface{})  { l.logf(format, v...) }
func (l testLogger) Error(format string, v ...interface{}) { l.logf(format, v...) }
func (l testLogger) Fatal(format string, v ...interface{}) { panic("fatal called in test") }

type tlog interface {
	Logf(format string, v ...interface{})
}

func newTestLogger(t tlog) Logger {
	return testLogger{logf: t.Logf}
}
