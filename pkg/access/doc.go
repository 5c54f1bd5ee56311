// Package access decides what a user may see and do in the
// accreditation tree. It has three parts: the resolver computes a
// user's effective role on a single entity, the gate turns that role
// into an allow/deny decision with caching, and the filter emits SQL
// constraints that scope collection queries to the visible subset
// without resolving rows one at a time.
//
// Roles attach at two grain levels only, projects and factors. Traits
// and aspects never carry assignments; their effective role is the
// owning factor's. An EDITOR grant on a project overrides any
// narrower grant on the project's factors.
package access
