package errors

import "google.golang.org/grpc/codes"

// Common errors shared by all services (service code 00).
var (
	// OK represents a successful operation.
	OK = &Errno{Code: 0, HTTP: 200, GRPCCode: codes.OK, Msg: "success"}

	// ErrBadRequest indicates a malformed or invalid request.
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request"))

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), 404, codes.NotFound, "Resource not found"))

	// ErrInternal indicates an unexpected server-side failure.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), 500, codes.Internal, "Internal server error"))

	// ErrTimeout indicates the operation exceeded its deadline.
	ErrTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1), 504, codes.DeadlineExceeded, "Operation timed out"))
)
