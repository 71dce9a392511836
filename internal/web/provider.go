package web

// Provider is a content source consulted in registration order. The first
// provider reporting found answers the request.
type Provider interface {
	Serve(req *Request) (resp *Response, found bool)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(req *Request) (*Response, bool)

// Serve calls f.
func (f ProviderFunc) Serve(req *Request) (*Response, bool) { return f(req) }

// Dispatch asks each provider in turn. A nil response from a provider that
// reports found is treated as an empty body.
func Dispatch(providers []Provider, req *Request) (*Response, bool) {
	for _, p := range providers {
		resp, found := p.Serve(req)
		if !found {
			continue
		}
		if resp == nil {
			resp = &Response{}
		}
		return resp, true
	}
	return nil, false
}
