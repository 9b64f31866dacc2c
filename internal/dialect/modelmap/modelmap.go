// Package modelmap resolves a client-facing model name to the upstream
// model id via the static table loaded from config (model_map.yaml).
// Unknown names pass through unchanged.
package modelmap

// Resolve looks up name in table and returns the mapped upstream model id,
// or name itself if there is no entry.
func Resolve(table map[string]string, name string) string {
	if table == nil {
		return name
	}
	if mapped, ok := table[name]; ok && mapped != "" {
		return mapped
	}
	return name
}
