// Package scheduler fires agent pipelines on five-field cron schedules.
//
// Each agent becomes a Job. A timer loop wakes every tick, pops the jobs whose
// next fire time has passed and hands them to a bounded worker pool. A job
// runs at most one instance at a time: a firing that arrives while the job is
// still busy is dropped, never queued. Failed runs are retried with
// exponential backoff and then given up on; errors never escape a job.
//
// Job lifecycle:
//
//	Idle -> Firing -> Succeeded -> Idle
//	             \-> Retrying -> Firing
//	             \-> Exhausted -> Idle
package scheduler
