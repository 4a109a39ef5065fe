package natives

// RegisterCore populates r with every built-in native module this VM
// ships. Split module-per-file the way jacobin splits gfunction
// packages one Go file per JDK class family.
func RegisterCore(r *Registry) {
	loadLang(r)
	loadString(r)
	loadBoxing(r)
	loadThread(r)
	loadIO(r)
}
