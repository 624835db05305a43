package command

var (
	addJob = &Descriptor{
		Name:      ADDJOB,
		Arguments: queueAndBody,
		Options: []OptionSpec{
			// milliseconds to wait for the job to be replicated, always sent
			{Name: "timeout", Type: OptionInt, Default: 0},
			{Name: "replicate", Keyword: "REPLICATE", Type: OptionInt},
			{Name: "delay", Keyword: "DELAY", Type: OptionInt},
			{Name: "retry", Keyword: "RETRY", Type: OptionInt},
			{Name: "ttl", Keyword: "TTL", Type: OptionInt},
			{Name: "maxlen", Keyword: "MAXLEN", Type: OptionInt},
			{Name: "async", Keyword: "ASYNC", Type: OptionBool},
		},
		Blocking: func(opts Options) bool {
			timeout, _ := opts.Int("timeout")
			return timeout > 0 && !opts.Bool("async")
		},
		Parse: parseOptionalString,
	}

	getJob = &Descriptor{
		Name:      GETJOB,
		Arguments: atLeastStrings(1),
		Options: []OptionSpec{
			{Name: "nohang", Keyword: "NOHANG", Type: OptionBool},
			{Name: "timeout", Keyword: "TIMEOUT", Type: OptionInt},
			{Name: "count", Keyword: "COUNT", Type: OptionInt},
			{Name: "withcounters", Keyword: "WITHCOUNTERS", Type: OptionBool},
		},
		OptionsFirst:     true,
		ArgumentsKeyword: "FROM",
		Blocking: func(opts Options) bool {
			return !opts.Bool("nohang")
		},
		Parse: parseJobsWithQueue,
	}

	ackJob  = jobIDsCommand(ACKJOB)
	fastAck = jobIDsCommand(FASTACK)
	delJob  = jobIDsCommand(DELJOB)
	nack    = jobIDsCommand(NACK)
	enqueue = jobIDsCommand(ENQUEUE)
	dequeue = jobIDsCommand(DEQUEUE)

	working = &Descriptor{
		Name:      WORKING,
		Arguments: exactStrings(1),
		Parse:     parseInteger,
	}

	qlen = &Descriptor{
		Name:      QLEN,
		Arguments: exactStrings(1),
		Parse:     parseInteger,
	}

	qpeek = &Descriptor{
		Name:      QPEEK,
		Arguments: queueAndCount,
		Parse:     parseJobsWithQueue,
	}

	qscan = &Descriptor{
		Name:      QSCAN,
		Arguments: optionalCursor,
		Options: []OptionSpec{
			{Name: "busyloop", Keyword: "BUSYLOOP", Type: OptionBool},
			{Name: "count", Keyword: "COUNT", Type: OptionInt},
			{Name: "minlen", Keyword: "MINLEN", Type: OptionInt},
			{Name: "maxlen", Keyword: "MAXLEN", Type: OptionInt},
			{Name: "importrate", Keyword: "IMPORTRATE", Type: OptionInt},
		},
		Parse: parseQueueCursor,
	}

	jscan = &Descriptor{
		Name:      JSCAN,
		Arguments: optionalCursor,
		Options: []OptionSpec{
			{Name: "busyloop", Keyword: "BUSYLOOP", Type: OptionBool},
			{Name: "count", Keyword: "COUNT", Type: OptionInt},
			{Name: "queue", Keyword: "QUEUE", Type: OptionString},
			{Name: "state", Keyword: "STATE", Type: OptionStrings},
			{Name: "reply", Keyword: "REPLY", Type: OptionString, Values: []string{"all", "id"}},
		},
		Parse: parseJobCursor,
	}

	qstat = &Descriptor{
		Name:      QSTAT,
		Arguments: exactStrings(1),
		Parse:     parseKeyValues,
	}

	pause = &Descriptor{
		Name:      PAUSE,
		Arguments: queueAndPauseMode,
		Parse:     parseString,
	}

	show = &Descriptor{
		Name:      SHOW,
		Arguments: exactStrings(1),
		Parse:     parseKeyValues,
	}

	hello = &Descriptor{
		Name:      HELLO,
		Arguments: noArguments,
		Parse:     parseHello,
	}

	auth = &Descriptor{
		Name:      AUTH,
		Arguments: exactStrings(1),
		Parse:     parseString,
	}

	info = &Descriptor{
		Name:      INFO,
		Arguments: noArguments,
		Parse:     parseString,
	}

	builtins = []*Descriptor{
		addJob, getJob, ackJob, fastAck, delJob, nack, working, enqueue, dequeue,
		qlen, qpeek, qscan, jscan, qstat, pause, show, hello, auth, info,
	}

	// PauseModes are the modes accepted by PAUSE
	PauseModes = []string{"in", "out", "all", "none", "state", "bcast"}
)

// jobIDsCommand describes the commands taking one or more job ids and
// replying with the number of jobs they affected.
func jobIDsCommand(name Name) *Descriptor {
	return &Descriptor{
		Name:      name,
		Arguments: atLeastStrings(1),
		Parse:     parseInteger,
	}
}

func NewAddJob(queue, body string, opts Options) (*Command, error) {
	return addJob.New([]interface{}{queue, body}, opts)
}

func NewGetJob(queues []string, opts Options) (*Command, error) {
	return getJob.New(Strings(queues...), opts)
}

func NewAckJob(ids ...string) (*Command, error) {
	return ackJob.New(Strings(ids...), nil)
}

func NewFastAck(ids ...string) (*Command, error) {
	return fastAck.New(Strings(ids...), nil)
}

func NewDelJob(ids ...string) (*Command, error) {
	return delJob.New(Strings(ids...), nil)
}

func NewNack(ids ...string) (*Command, error) {
	return nack.New(Strings(ids...), nil)
}

func NewEnqueue(ids ...string) (*Command, error) {
	return enqueue.New(Strings(ids...), nil)
}

func NewDequeue(ids ...string) (*Command, error) {
	return dequeue.New(Strings(ids...), nil)
}

func NewWorking(id string) (*Command, error) {
	return working.New(Strings(id), nil)
}

func NewQLen(queue string) (*Command, error) {
	return qlen.New(Strings(queue), nil)
}

func NewQPeek(queue string, count int) (*Command, error) {
	return qpeek.New([]interface{}{queue, count}, nil)
}

func NewQScan(cursor int64, opts Options) (*Command, error) {
	return qscan.New([]interface{}{cursor}, opts)
}

func NewJScan(cursor int64, opts Options) (*Command, error) {
	return jscan.New([]interface{}{cursor}, opts)
}

func NewQStat(queue string) (*Command, error) {
	return qstat.New(Strings(queue), nil)
}

func NewPause(queue, mode string) (*Command, error) {
	return pause.New(Strings(queue, mode), nil)
}

func NewShow(id string) (*Command, error) {
	return show.New(Strings(id), nil)
}

func NewHello() (*Command, error) {
	return hello.New(nil, nil)
}

func NewAuth(password string) (*Command, error) {
	return auth.New(Strings(password), nil)
}

func NewInfo() (*Command, error) {
	return info.New(nil, nil)
}
