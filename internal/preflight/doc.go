// Package preflight provides readiness checks for the generation service and
// the filesystem paths sketchforge writes to.
//
// The CLI "sketchforge check" command runs RunAll and renders the results;
// "generate" and "batch" run the same checks first so a misconfigured host
// fails before anything is uploaded.
package preflight
