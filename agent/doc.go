// Package agent loads agent definitions from YAML.
//
// An agent document holds either a single agent mapping or a list of them:
//
//	id: daily_research
//	schedule: "0 9 * * *"     # or {cron: "0 9 * * *"}
//	retries: 2
//	backoff: 0.5
//	inputs: {topic: golang}
//	filters: {source: Reddit}
//	pipeline:
//	  - step: search_web
//	    with: {query: "@topic"}
//	  - step: save_sources_markdown
//
// Loading is purely structural. Semantic checks such as unknown step names,
// cron syntax and duplicate ids are reported by Validate.
package agent
