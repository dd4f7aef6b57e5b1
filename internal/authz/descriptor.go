// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package authz

import (
	"fmt"
	"reflect"
)

// descriptorSeparator joins the descriptor parts. It never appears in
// handler or action names, so descriptors parse unambiguously.
const descriptorSeparator = "|"

// BuildDescriptor composes the operation identifier for the given
// request metadata. The result is deterministic: identical inputs always
// produce the identical string "handler|action|method". All three parts
// are required; a missing part is a configuration fault, not a deniable
// request.
func BuildDescriptor(handler, action, method string) (string, error) {
	if handler == "" {
		return "", fmt.Errorf("operation descriptor requires a handler identity")
	}
	if action == "" {
		return "", fmt.Errorf("operation descriptor requires an action name")
	}
	if method == "" {
		return "", fmt.Errorf("operation descriptor requires an HTTP method")
	}
	return handler + descriptorSeparator + action + descriptorSeparator + method, nil
}

// HandlerIdentity derives a handler identity from a handler value's Go
// type, with pointers dereferenced: *api.ReportsHandler yields
// "api.ReportsHandler". Identities derived this way change when the
// package or type is renamed, silently orphaning permissions keyed by
// the old descriptor; routes whose policies must survive refactors
// should configure an explicit handler name or operation override
// instead.
func HandlerIdentity(v interface{}) string {
	if v == nil {
		return ""
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
