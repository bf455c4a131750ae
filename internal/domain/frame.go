package domain

type ResponseType string

const (
	ResponseDelta  ResponseType = "delta"
	ResponseResult ResponseType = "result"
	ResponseEnd    ResponseType = "end"
	ResponseError  ResponseType = "error"
)

func (t ResponseType) Valid() bool {
	switch t {
	case ResponseDelta, ResponseResult, ResponseEnd, ResponseError:
		return true
	default:
		return false
	}
}

// Request is the payload of a request frame.
type Request struct {
	RequestID   string
	DeviceID    string
	Model       string
	Persona     string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Stream      bool
	AuthToken   string
}

// Response is the payload of one response frame.
type Response struct {
	RequestID    string
	Type         ResponseType
	Text         string
	ErrorCode    string
	ErrorMessage string
}
