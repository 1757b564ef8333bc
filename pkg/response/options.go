package response

import "github.com/sirupsen/logrus"

type options struct {
	layout Layout
	log    logrus.FieldLogger
	tool   string
}

// Option configures a Session or Writer.
type Option func(*options)

// WithLayout selects the producer platform layout. Defaults to LinuxLE64.
func WithLayout(layout Layout) Option {
	return func(o *options) { o.layout = layout }
}

// WithLogger routes session diagnostics to the given logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithTool sets the current-tool hint carried in diagnostics, equivalent to
// calling SetTool on the session.
func WithTool(name string) Option {
	return func(o *options) { o.tool = name }
}

func applyOptions(opts []Option) options {
	o := options{layout: DefaultLayout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	return o
}
