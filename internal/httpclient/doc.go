// Package httpclient turns configuration into a request spec and sends it.
//
// [BuildSpec] validates headers and resolves the body once, so every request of
// a run shares the same immutable [executor.RequestSpec]:
//
//	spec, err := httpclient.BuildSpec(cfg)
//
// [Transport] implements [executor.Transport] over a pooled *http.Client built
// by [NewClient]:
//
//	transport := httpclient.NewTransport(httpclient.NewClient(cfg.Timeout))
//	status, err := transport.Do(ctx, spec.Method, spec.URL, spec.Headers, spec.Body)
//
// Response bodies are drained and discarded. Status codes >= 400 are returned
// as ordinary statuses, never as errors.
package httpclient
