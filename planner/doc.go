// Package planner turns free-text requests into ad hoc pipelines.
//
// Plan maps a request to a short list of step invocations using keyword
// rules that understand English and Russian phrasing. Nothing runs until the
// user confirms the plan; confirmed plans go through the lenient runner,
// which skips unknown steps and stops at the first failure.
package planner
