package response

import "sync"

// responsePool reuses Response objects to reduce allocation pressure on
// hot API paths. Handlers must call Release after the response is written.
var responsePool = sync.Pool{
	New: func() interface{} {
		return &Response{}
	},
}

// Acquire returns a Response from the pool.
func Acquire() *Response {
	return responsePool.Get().(*Response)
}

// Release resets the Response and returns it to the pool.
// The caller must not touch the Response after releasing it.
func Release(r *Response) {
	if r == nil {
		return
	}
	r.Code = 0
	r.HTTPCode = 0
	r.Message = ""
	r.Data = nil
	r.RequestID = ""
	responsePool.Put(r)
}
