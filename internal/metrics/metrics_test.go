package metrics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
	op string
}

func (s *MetricsTestSuite) SetupTest() {
	s.op = "op_" + uuid.NewString()
}

func (s *MetricsTestSuite) TestObserveOperation() {
	ObserveOperation(s.op, time.Now(), nil)
	ObserveOperation(s.op, time.Now(), errors.New("failed"))

	s.Equal(uint64(2), Operations(s.op))
	s.Equal(uint64(1), Failures(s.op))
}

func (s *MetricsTestSuite) TestProtocolViolation() {
	before := ProtocolViolations()
	ProtocolViolation()
	s.Equal(before+1, ProtocolViolations())
}

func (s *MetricsTestSuite) TestWritePrometheus() {
	ObserveOperation(s.op, time.Now().Add(-time.Millisecond), nil)

	var buf bytes.Buffer
	WritePrometheus(&buf)
	out := buf.String()
	s.Contains(out, `gedbpromise_operations_total{operation="`+s.op+`"} 1`)
	s.Contains(out, `gedbpromise_operation_duration_seconds_bucket{operation="`+s.op+`"`)
}

func TestMetricsTestSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}
