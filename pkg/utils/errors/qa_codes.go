package errors

import "google.golang.org/grpc/codes"

// QA service errors (service code 20).
//
// The taxonomy distinguishes three kinds of failure the caller must be able
// to tell apart: "try again later" (network/timeout/quota), "this input is
// wrong" (validation/config), and "this is a grounding-quality issue, not a
// system error" (refusal, empty index).
var (
	// Request/validation errors (category 01)
	ErrQAInvalidRequest = Register(New(MakeCode(ServiceQA, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters"))
	ErrQAInvalidConfig  = Register(New(MakeCode(ServiceQA, CategoryConfig, 1), 400, codes.InvalidArgument, "Invalid chunking configuration"))

	// Resource errors (category 04)
	ErrQAEmptyIndex       = Register(New(MakeCode(ServiceQA, CategoryResource, 1), 404, codes.NotFound, "No documents have been indexed"))
	ErrQADocumentNotFound = Register(New(MakeCode(ServiceQA, CategoryResource, 2), 404, codes.NotFound, "Document not found"))

	// Rate limiting errors (category 06)
	ErrQAQuotaExceeded = Register(New(MakeCode(ServiceQA, CategoryRateLimit, 1), 429, codes.ResourceExhausted, "Language model quota exceeded"))

	// Internal errors (category 07)
	ErrQAIndexFailed   = Register(New(MakeCode(ServiceQA, CategoryInternal, 1), 500, codes.Internal, "Document indexing failed"))
	ErrQAModelRefusal  = Register(New(MakeCode(ServiceQA, CategoryInternal, 2), 502, codes.Internal, "Model declined to generate an answer"))
	ErrQAEvalFailed    = Register(New(MakeCode(ServiceQA, CategoryInternal, 3), 500, codes.Internal, "Evaluation failed"))
	ErrQAUploadFailed  = Register(New(MakeCode(ServiceQA, CategoryInternal, 4), 500, codes.Internal, "Document upload failed"))
	ErrQADeleteFailed  = Register(New(MakeCode(ServiceQA, CategoryInternal, 5), 500, codes.Internal, "Document deletion failed"))
	ErrQAStoreFailure  = Register(New(MakeCode(ServiceQA, CategoryInternal, 6), 500, codes.Internal, "Vector store operation failed"))
	ErrQALoaderFailure = Register(New(MakeCode(ServiceQA, CategoryInternal, 7), 422, codes.InvalidArgument, "Unsupported or unreadable document format"))

	// Network errors (category 10)
	ErrQAEmbeddingUnavailable = Register(New(MakeCode(ServiceQA, CategoryNetwork, 1), 503, codes.Unavailable, "Embedding backend unavailable"))
	ErrQAGenerationFailed     = Register(New(MakeCode(ServiceQA, CategoryNetwork, 2), 502, codes.Unavailable, "Answer generation failed"))

	// Timeout errors (category 11)
	ErrQAQueryTimeout = Register(New(MakeCode(ServiceQA, CategoryTimeout, 1), 408, codes.DeadlineExceeded, "Query timed out"))
)
