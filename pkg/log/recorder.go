package log

// Entry is one captured log record.
type Entry struct {
	Level   Level
	Message string
	Fields  []Field
}

// Recorder is a Logger that captures entries in memory. Tests use it to
// assert on defect warnings and startup output.
type Recorder struct {
	level   Level
	context []Field
	sink    *[]Entry
}

// NewRecorder returns a Recorder capturing everything at debug level and up.
func NewRecorder() *Recorder {
	return &Recorder{level: DebugLevel, sink: new([]Entry)}
}

func (r *Recorder) record(level Level, msg string, fields []Field) {
	if level < r.level {
		return
	}
	all := make([]Field, 0, len(r.context)+len(fields))
	all = append(all, r.context...)
	all = append(all, fields...)
	*r.sink = append(*r.sink, Entry{Level: level, Message: msg, Fields: all})
}

func (r *Recorder) Debug(msg string, fields ...Field) { r.record(DebugLevel, msg, fields) }
func (r *Recorder) Info(msg string, fields ...Field)  { r.record(InfoLevel, msg, fields) }
func (r *Recorder) Warn(msg string, fields ...Field)  { r.record(WarnLevel, msg, fields) }
func (r *Recorder) Error(msg string, fields ...Field) { r.record(ErrorLevel, msg, fields) }

// With returns a recorder sharing the same sink with extra context fields.
func (r *Recorder) With(fields ...Field) Logger {
	clone := *r
	clone.context = append(append([]Field(nil), r.context...), fields...)
	return &clone
}

// WithComponent tags entries with a component name.
func (r *Recorder) WithComponent(name string) Logger { return r.With(Component(name)) }

func (r *Recorder) SetLevel(level Level) { r.level = level }
func (r *Recorder) GetLevel() Level      { return r.level }

// Entries returns all captured entries, shared across With derivatives.
func (r *Recorder) Entries() []Entry { return *r.sink }

// Reset discards captured entries.
func (r *Recorder) Reset() { *r.sink = (*r.sink)[:0] }
