package errno

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Wallet Errors (20100+)
var (
	ErrWallet    = Errno{Code: 20101, Message: "Wallet provider unavailable or connection rejected"}
	ErrNoAccount = Errno{Code: 20102, Message: "No connected account"}
	ErrSigning   = Errno{Code: 20103, Message: "Signing rejected or failed"}
)

// Transaction Errors (20200+)
var (
	ErrParse         = Errno{Code: 20201, Message: "Transaction text is not valid JSON"}
	ErrSchema        = Errno{Code: 20202, Message: "Invalid transaction format"}
	ErrExecution     = Errno{Code: 20203, Message: "On-chain execution failed"}
	ErrShareNotFound = Errno{Code: 20204, Message: "Share code not found or expired"}
)
