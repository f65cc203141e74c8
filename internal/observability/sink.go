package observability

import (
	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// EventSink logs core events and records them as metrics.
type EventSink struct {
	logger  Logger
	metrics *Metrics
}

var _ rebound.EventSink = (*EventSink)(nil)

// NewEventSink creates an EventSink. Metrics may be nil.
func NewEventSink(logger Logger, metrics *Metrics) *EventSink {
	if logger == nil {
		logger = NopLogger()
	}
	return &EventSink{logger: logger, metrics: metrics}
}

// RequestReceived implements rebound.EventSink.
func (s *EventSink) RequestReceived(worker string, req *rebound.Request) {
	s.metrics.RecordRequestReceived()
	s.logger.Info("handling request",
		String("worker", worker),
		String("request_id", req.ID),
		String("method", req.Method),
		String("host", req.Host),
		String("path", req.Path),
		String("client_ip", req.ClientIP()),
	)
}

// Dispatched implements rebound.EventSink.
func (s *EventSink) Dispatched(d rebound.Dispatch) {
	s.metrics.RecordDispatch(string(d.Action), d.Status, d.Duration)

	fields := []Field{
		String("worker", d.Worker),
		String("request_id", d.RequestID),
		Int("rule", d.Ordinal),
		String("action", string(d.Action)),
		Int("status", d.Status),
		Duration("duration", d.Duration),
	}
	if d.RuleName != "" {
		fields = append(fields, String("rule_name", d.RuleName))
	}
	if d.Upstream != "" {
		fields = append(fields, String("upstream", d.Upstream))
	}

	if d.Err != nil {
		s.logger.Warn("request dispatched with upstream failure", append(fields, Error(d.Err))...)
		return
	}
	s.logger.Info("request dispatched", fields...)
}

// WorkerFault implements rebound.EventSink.
func (s *EventSink) WorkerFault(worker string, req *rebound.Request, fault error) {
	s.metrics.RecordWorkerFault()

	fields := []Field{
		String("worker", worker),
		Error(fault),
	}
	if req != nil {
		fields = append(fields,
			String("request_id", req.ID),
			String("method", req.Method),
			String("path", req.Path),
		)
	}
	s.logger.Error("worker recovered from fault", fields...)
}
