package sandbox

// sourceDateEpochValue is injected as SOURCE_DATE_EPOCH so compilers that embed build timestamps
// produce byte-identical output across runs, per the reproducible-builds
// convention shared by GCC, Go, and most modern toolchains.
const sourceDateEpochValue = "1577836800" // 2020-01-01T00:00:00Z, a fixed reference instant

// fixedPRNGSeed is injected for tools whose output depends on randomness
// (test shuffling, temp-name generation) so two runs of the same action
// produce comparable output.
const fixedPRNGSeed = "42"

// ApplyDeterminismEnv injects the fixed clock and PRNG seed into env,
// without overwriting values the caller already set explicitly.
func ApplyDeterminismEnv(env map[string]string) {
	if _, ok := env["SOURCE_DATE_EPOCH"]; !ok {
		env["SOURCE_DATE_EPOCH"] = sourceDateEpochValue
	}
	if _, ok := env["BUILD_PRNG_SEED"]; !ok {
		env["BUILD_PRNG_SEED"] = fixedPRNGSeed
	}
}

// DeterminismFlag names a single compiler-specific flag that should be
// present for the build to be reproducible, and why.
type DeterminismFlag struct {
	Compiler string
	Flag     string
	Reason   string
}

// RequiredDeterminismFlags is the enumerable, extensible table of
// (compiler, required flag, reason) triples checked against a command line.
var RequiredDeterminismFlags = []DeterminismFlag{
	{Compiler: "gcc", Flag: "-fdebug-prefix-map", Reason: "embeds absolute build paths into debug info otherwise"},
	{Compiler: "g++", Flag: "-fdebug-prefix-map", Reason: "embeds absolute build paths into debug info otherwise"},
	{Compiler: "clang", Flag: "-fdebug-prefix-map", Reason: "embeds absolute build paths into debug info otherwise"},
	{Compiler: "go", Flag: "-trimpath", Reason: "embeds the GOPATH/module cache absolute path into the binary otherwise"},
	{Compiler: "rustc", Flag: "--remap-path-prefix", Reason: "embeds absolute source paths into panic messages otherwise"},
}

// forbiddenDeterminismFlags table of flags that are individually known to
// break reproducibility when present, regardless of what else is set.
var forbiddenDeterminismFlags = map[string][]string{
	"rustc": {"-Cincremental=true"},
	"cargo": {"--incremental"},
}

// MissingFlags returns the compiler, flag and reason for every required
// determinism flag absent from command that names the given compiler as its
// first argument, plus a synthetic entry (flag prefixed "!") for any
// forbidden flag that IS present.
func MissingFlags(command []string) []DeterminismFlag {
	if len(command) == 0 {
		return nil
	}
	compiler := command[0]

	present := make(map[string]bool, len(command))
	for _, arg := range command[1:] {
		present[arg] = true
	}

	var missing []DeterminismFlag
	for _, req := range RequiredDeterminismFlags {
		if req.Compiler != compiler {
			continue
		}
		if !hasFlagPrefix(present, req.Flag) {
			missing = append(missing, req)
		}
	}
	for _, forbidden := range forbiddenDeterminismFlags[compiler] {
		if present[forbidden] {
			missing = append(missing, DeterminismFlag{
				Compiler: compiler,
				Flag:     "!" + forbidden,
				Reason:   "flag " + forbidden + " breaks reproducibility and must not be set",
			})
		}
	}
	return missing
}

// hasFlagPrefix reports whether any present argument starts with flag (to
// match "-fdebug-prefix-map=old=new" against the bare "-fdebug-prefix-map"
// table entry).
func hasFlagPrefix(present map[string]bool, flag string) bool {
	for arg := range present {
		if len(arg) >= len(flag) && arg[:len(flag)] == flag {
			return true
		}
	}
	return false
}
