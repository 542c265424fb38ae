// Package field binds declarative <field> host elements to a resolved input
// template.
//
// A host such as
//
//	<field model="user.email" template="input.html" maxlength-rule="64" required>
//	  <label>Email</label>
//	  <validator key="required">{{ $fieldLabel }} is required</validator>
//	</field>
//
// is bound in these steps:
//
//  1. the host is checked for directives that cannot carry a stable identity
//     (repeat, switch, if);
//  2. the template is resolved through a templates.Resolver, off the caller's
//     goroutine;
//  3. the validator declarations are compiled into a MessageMap;
//  4. the fragment is composed into the host: identifier wiring, attribute
//     propagation and label transplant;
//  5. a controller is attached to the input-like element and published on a
//     scope local to the field as $field, together with $fieldErrors and
//     $messageMap.
//
// Derived state ($fieldErrors, $fieldLabel) settles on the next Digest.
package field
