// Package crawler implements the job-board crawl engine: the page navigator
// that drives the listings site, the link classifier that confirms search
// terms on detail pages, the polite fetcher, and the resumable driver that
// ties them together over a job store and a persisted cursor.
package crawler
