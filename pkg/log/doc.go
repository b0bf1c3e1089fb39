// Package log provides the process-wide zerolog logger used by every
// other package. Call Init once at startup with the resolved logging
// config; everything else derives a component-scoped child logger via
// WithComponent/WithUserID/WithOpID/WithTMID.
package log
