package pointer

// ConstInit is implemented by types whose canonical default value is known at compile time. Every
// implementation in this package returns its type's zero value, which means globals of these types
// are laid out in the binary's data segment and need no startup code to become valid.
type ConstInit[P any] interface {
	// ConstInit returns the default value of the type. The receiver is not consulted.
	ConstInit() P
}
