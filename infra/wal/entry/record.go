package entry

// RecordType names the invocation a journal record carries.
type RecordType uint8

const (
	RecordCreateGroup RecordType = iota + 1
	RecordCreateInstrument
	RecordDeposit
	RecordWithdraw
	RecordSubmit
	RecordCancel
	RecordCrank
	RecordAckReports
)

func (t RecordType) String() string {
	switch t {
	case RecordCreateGroup:
		return "create_group"
	case RecordCreateInstrument:
		return "create_instrument"
	case RecordDeposit:
		return "deposit"
	case RecordWithdraw:
		return "withdraw"
	case RecordSubmit:
		return "submit"
	case RecordCancel:
		return "cancel"
	case RecordCrank:
		return "crank"
	case RecordAckReports:
		return "ack_reports"
	default:
		return "unknown"
	}
}

// Record is one accepted invocation. Time is the invocation clock the
// engine saw, so replaying the record reproduces the same state.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}
