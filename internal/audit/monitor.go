package audit

// RealTimeMonitor exposes the Logger's alert ring to live observers (the
// alert feed relay, an admin command) without granting access to the
// full audit log.
type RealTimeMonitor struct {
	logger *Logger
}

// NewRealTimeMonitor wraps an existing Logger.
func NewRealTimeMonitor(logger *Logger) *RealTimeMonitor {
	return &RealTimeMonitor{logger: logger}
}

// GetRecentAlerts returns up to 50 of the most recent error/critical
// audit entries.
func (m *RealTimeMonitor) GetRecentAlerts() []Entry {
	return m.logger.RecentAlerts()
}
