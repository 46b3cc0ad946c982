// Package cove compiles CEL constraint expressions into native expressions
// that can be rendered into generated validation code.
//
// The compiler partially evaluates each expression against a schema. Parts
// that depend only on constants are folded into values at compile time;
// parts that depend on runtime data are kept as a tree of typed calls to
// the overloads of the function registry. A constraint whose result is known
// at compile time never reaches the generated code.
//
// This package holds the pieces shared by the sub-packages: the static type
// system (Type, Kind and the concrete types), the Schema that declares the
// identifiers an expression may reference, and the sentinel errors the
// compiler wraps.
//
// Typical use is as follows:
//
//  1. Declare a schema describing the data a constraint reads, either by hand
//     or from protobuf descriptors with the schema package
//  2. Create constraint rules, possibly with many child rules
//  3. Create an engine
//  4. Use the engine to compile the rules
//  5. Inspect the compiled programs, or evaluate them with the reference
//     runtime
//
// Identifiers
//
// Two identifiers have a fixed meaning. InputKey names the message or field
// being validated, and is always a runtime value. ThisKey names the
// constraint's own parameter, such as the 3 in "at most 3 items", and is a
// compile-time constant.
//
// Rule Ownership and Modification
//
// A compiled rule tree may be evaluated by many goroutines at once, but it
// must not be changed while it is being compiled or evaluated. To change
// rules while they are in use, keep them in an engine.Vault. A vault
// compiles each change against the schema it inherits and publishes a new
// tree only if every change in the batch compiles.
//
// Structure the hierarchy so that a rule and its children can be replaced
// as a unit. If two sibling constraints only make sense together, replace
// their parent, not each child on its own.
package cove
