package copa

// delayControl implements the velocity-based window/rate update rule
// (spec.md §4.4.4): it is invoked once per Report-status measurement,
// which by construction of AggMeasurement's gate happens at most
// roughly once per srtt/2 and never during the urgent/no-report paths.
func (c *Controller) delayControl(rtt uint32, actualAcked Bytes, now Microseconds) {
	baseRTT := c.rtt.BaseRTT()
	delta := c.delta.GetDelta()

	// increase iff the observed queuing delay is below the target
	// 1/(delta*cwnd) inverse-window delay. When rtt == baseRTT the RHS
	// is 0, so increase is true.
	increase := uint64(rtt)*rateMSS > uint64(float64(rtt-baseRTT)*float64(delta)*float64(c.cwnd))

	acked := actualAcked
	if actualAcked > c.cwnd {
		// CCP can return significantly later than requested; cap the
		// effective acked amount to the window so a single delayed
		// callback cannot blow past cwnd in one step.
		acked = c.cwnd
	}

	if increase {
		c.curDirection++
	} else {
		c.curDirection--
	}

	if c.velocity > 1 && ((increase && c.prevDirection < 0) || (!increase && c.prevDirection > 0)) {
		c.velocity = 1
		c.timeSinceDirection = now
	}

	if !c.slowStart && now-c.prevUpdateRTT >= 2*Microseconds(rtt) {
		sameSign := (c.prevDirection > 0 && c.curDirection > 0) || (c.prevDirection < 0 && c.curDirection < 0)
		if sameSign && now-c.timeSinceDirection > 3*Microseconds(rtt) {
			c.velocity *= 2
		} else {
			c.velocity = 1
			c.timeSinceDirection = now
		}
		if c.velocity > maxVelocity {
			c.velocity = maxVelocity
		}
		c.prevDirection = c.curDirection
		c.curDirection = 0
		c.prevUpdateRTT = now
	}

	if c.slowStart {
		if increase {
			c.cwnd += acked
		} else {
			c.slowStart = false
		}
	} else {
		velocity := uint64(1)
		if (increase && c.prevDirection > 0) || (!increase && c.prevDirection < 0) {
			velocity = uint64(c.velocity)
		}

		effectiveDelta := delta
		if !increase && c.delta.GetMode() == ModeTCPCoop {
			effectiveDelta = tcpEquivalentDelta(delta)
		}

		// Integer division in u64 after multiplying first, to match the
		// order of operations that keeps rounding error small.
		change := Bytes(velocity * windowMSS * uint64(acked) / uint64(float64(c.cwnd)*float64(effectiveDelta)))

		if increase {
			c.cwnd += change
		} else if change+c.initCWND > c.cwnd {
			c.cwnd = c.initCWND
			c.velocity = 1
			c.timeSinceDirection = now
		} else {
			c.cwnd -= change
		}
	}
}
