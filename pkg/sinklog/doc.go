// Package sinklog is a synchronous, pattern-driven logging engine.
//
// A Registry owns named Handlers and named sinks. Each Handler carries an
// ordered list of Rules; a Rule binds an inclusive level range to a compiled
// format Template and a Sink. Logging through a Handler renders the record
// once per matching Rule into the Handler's buffer and hands the bytes to the
// Rule's Sink, all on the calling goroutine.
//
// Basic Usage:
//
//	reg, err := sinklog.NewRegistry()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer reg.Close()
//
//	file, err := reg.OpenSink("app", "file:///var/log/app?size=10MB&backups=5")
//	if err != nil {
//		log.Fatal(err)
//	}
//	tpl, err := reg.Compile("%d.%ms %5V [%c] %F:%L %m%n")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	app := reg.Handler("app")
//	app.Bind(types.LevelInfo, types.LevelFatal, tpl, file)
//	app.Infof("listening on %s", addr)
//
// Format directives:
//
//	%d, %d(<strftime>)  time, "%F %T" by default
//	%ms, %us            milliseconds and microseconds of the second
//	%E(<name>)          environment variable
//	%c %H               handler ident, hostname
//	%F %U %L            caller file, function, line
//	%p %t %T            pid, thread id (decimal, hex)
//	%V %v               level, upper and lower case
//	%m                  the message
//	%C %R               level color and reset, for sinks that want color
//	%r %n %%            carriage return, newline, percent
//
// Every directive accepts a printf-style prefix: %-10c, %05p, %.8m.
//
// Logging never returns an error. Failures of a sink or a template are
// reported to the Registry's ErrorHandler and the record is dropped for that
// Rule only.
//
// The package-level functions (Infof, Errorf, ...) log through the "default"
// handler of Default(), which writes Info and above to stderr.
package sinklog
