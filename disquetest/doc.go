// Package disquetest runs an in-process Disque node for tests.
//
// The node speaks enough of the Disque protocol to exercise a client end to
// end: HELLO, AUTH, ADDJOB, GETJOB, the job id commands (ACKJOB, FASTACK,
// DELJOB, NACK, ENQUEUE, DEQUEUE, WORKING), QLEN, QPEEK, QSTAT, QSCAN, JSCAN,
// SHOW, PAUSE and INFO. Jobs are never replicated, peers only show up in the
// HELLO reply so clients can discover them.
//
//	srv, err := disquetest.Start(ctx, disquetest.Options{Log: log})
//	...
//	defer srv.Close()
package disquetest
