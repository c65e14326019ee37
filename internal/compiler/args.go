package compiler

import "fmt"

const defaultAudioBitrate = "192k"

// buildArgs assembles the full ffmpeg argument vector in the order §12
// prescribes: global flags, the selected profile's hwaccel flags, one
// reconnect/timeout block per input, the filter graph, the [v]/[a] maps,
// the profile's encoder args plus a fixed audio codec, and the mpegts
// stdout sink.
func buildArgs(req CompileRequest, filterGraph string) []string {
	args := []string{"-hide_banner", "-loglevel", "warning", "-y"}
	args = append(args, req.Profile.HWAccelArgs...)

	for _, in := range req.Inputs {
		args = append(args, perInputArgs(in.URL, req.Network)...)
	}

	args = append(args, "-filter_complex", filterGraph)
	args = append(args, "-map", "[v]", "-map", "[a]")
	args = append(args, req.Profile.EncoderArgs...)
	args = append(args, "-c:a", "aac", "-b:a", defaultAudioBitrate)
	args = append(args, "-f", "mpegts", "-")
	return args
}

// perInputArgs renders the reconnect/timeout flags and user-agent override
// that precede each -i, carried over from the prototype's literal flag set
// with the timeout made configurable instead of hardcoded.
func perInputArgs(url string, net NetworkTuning) []string {
	micros := net.ReconnectTimeoutMicros
	if micros <= 0 {
		micros = 15_000_000
	}
	timeoutStr := fmt.Sprintf("%d", micros)
	args := []string{
		"-thread_queue_size", "1024",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_on_network_error", "1",
		"-rw_timeout", timeoutStr,
		"-timeout", timeoutStr,
	}
	if net.UserAgent != "" {
		args = append(args, "-user_agent", net.UserAgent)
	}
	args = append(args, "-i", url)
	return args
}
