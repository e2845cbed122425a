package domain

// ResultClass is the coarse outcome written back onto a request
type ResultClass int

const (
	ClassSuccess ResultClass = iota
	ClassClientError
	ClassServerError
)

func (c ResultClass) String() string {
	switch c {
	case ClassSuccess:
		return "Success"
	case ClassClientError:
		return "ClientError"
	case ClassServerError:
		return "ServerError"
	}
	return "Unknown"
}

// ResultCode refines a ResultClass
type ResultCode int

const (
	CodeChanged ResultCode = iota
	CodeContent
	CodeCreated
	CodeBadRequest
	CodeNotFound
	CodePreconditionFailed
	CodeInternalServerError
)

func (c ResultCode) String() string {
	switch c {
	case CodeChanged:
		return "Changed"
	case CodeContent:
		return "Content"
	case CodeCreated:
		return "Created"
	case CodeBadRequest:
		return "BadRequest"
	case CodeNotFound:
		return "NotFound"
	case CodePreconditionFailed:
		return "PreconditionFailed"
	case CodeInternalServerError:
		return "InternalServerError"
	}
	return "Unknown"
}

// Method is the request method the transport received
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// ContentFormat identifies the encoding of a request payload. Values are the
// CoAP content-format registry numbers.
type ContentFormat int

const (
	FormatUnspecified ContentFormat = -1
	FormatTextPlain   ContentFormat = 0
	FormatJSON        ContentFormat = 50
	FormatCBOR        ContentFormat = 60
)

// Request is an already-parsed inbound resource request. Handlers write the
// outcome into ResultClass and ResultCode.
type Request struct {
	Method        Method
	Path          string
	SourceAddress string
	Payload       []byte
	ContentFormat ContentFormat

	ResultClass ResultClass
	ResultCode  ResultCode
}

// SetResult records the outcome of handling the request
func (r *Request) SetResult(class ResultClass, code ResultCode) {
	r.ResultClass = class
	r.ResultCode = code
}

// Succeeded reports whether the request ended in the success class
func (r *Request) Succeeded() bool {
	return r.ResultClass == ClassSuccess
}
