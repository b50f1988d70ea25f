package kubernetes

import (
	"context"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

func FilterPods(ctx context.Context, kubecli kubernetes.Interface, namespace, labelSelector, fieldSelector string, key func(p *corev1.Pod) string, values func(p *corev1.Pod) interface{}) (map[string]interface{}, error) {

	pods, err := kubecli.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
		FieldSelector: fieldSelector,
	})
	if err != nil {
		return nil, err
	}

	m := make(map[string]interface{})
	for i := range pods.Items {
		p := &pods.Items[i]
		m[key(p)] = values(p)
	}
	return m, nil
}
