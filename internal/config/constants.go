package config

// Built-in function names
const (
	PrintFuncName = "print"
)

// Built-in Result type and its constructors
const (
	ResultTypeName = "Result"
	OkCtorName     = "Ok"
	ErrorCtorName  = "Error"
)

// Generated member names
const (
	EntryMethodName       = "main"
	InitializerMethodName = "<clinit>"
	LambdaPrefix          = "lambda$"
	CtorFactoryPrefix     = "make$"
)

// Config file names searched by FindConfig, in order.
var ConfigFileNames = []string{"miniml.yaml", "miniml.yml", "miniml.toml"}

// DefaultModuleName names a module that did not declare one.
const DefaultModuleName = "Main"
