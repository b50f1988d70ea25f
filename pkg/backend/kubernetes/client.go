package kubernetes

import (
	"github.com/pkg/errors"
	"k8s.io/client-go/kubernetes"
	restclient "k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
)

// GetConfig builds a rest config from kubeconfig, or from the in-cluster environment when
// kubeconfig is empty.
func GetConfig(kubeconfig, kubeApiserver string) (*restclient.Config, error) {

	var (
		restConfig *restclient.Config
		err        error
	)
	if len(kubeconfig) == 0 {
		klog.Info("create kubeconfig in cluster")
		restConfig, err = clientcmd.BuildConfigFromFlags(kubeApiserver, "")
	} else {
		klog.Infof("create kubeconfig from kubeconfig file %s, master url is %s", kubeconfig, kubeApiserver)
		restConfig, err = clientcmd.BuildConfigFromFlags(kubeApiserver, kubeconfig)
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to get kubeconfig")
	}
	return restConfig, nil
}

func GetClientSet(kubeconfig, kubeApiserver string) (*restclient.Config, *kubernetes.Clientset, error) {
	config, err := GetConfig(kubeconfig, kubeApiserver)
	if err != nil {
		return nil, nil, err
	}
	kubeCli, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create kubernetes clientset")
	}
	return config, kubeCli, nil
}
